// Package lex provides a declarative text template engine for content pipelines.
//
// Templates are plain text with {{ }} tags. Data is a Value tree (mappings,
// sequences and scalars); tags the engine cannot resolve are handed to an
// optional Callback supplied by the caller.
//
// # Quick Start
//
//	data := lex.Map(
//	    lex.P("name", lex.String("Dan")),
//	    lex.P("posts", lex.Seq(
//	        lex.Map(lex.P("title", lex.String("Hello"))),
//	        lex.Map(lex.P("title", lex.String("World"))),
//	    )),
//	)
//
//	out, err := lex.Parse("Hi {{ name }}:{{ posts }} {{ title }}{{ /posts }}", data, nil)
//	// out == "Hi Dan: Hello World"
//
// Data coming from Go structs or YAML files can be converted with FromGo and
// DecodeYAML.
//
// # Template Syntax
//
//	{{# comment #}}                          - Removed before anything else
//	{{ noparse }}...{{ /noparse }}           - Emitted verbatim
//	{{ name }}  {{ user.address.city }}      - Variables
//	{{ posts }}...{{ /posts }}               - Loop over a sequence or mapping
//	{{ if a == 'x' }}...{{ elseif b }}...{{ else }}...{{ endif }}
//	{{ unless a }}...{{ elseunless b }}...{{ endif }}
//	{{ plugin.method key="value" }}...{{ /plugin.method }}
//	{{ plugin.method key="value" /}}         - Self-closing callback tag
//	{{ *recursive children* }}               - In callback output only
//
// Conditions support ==, !=, ===, !==, <>, <, >, <=, >=, and, or, &&, ||,
// not, !, exists path, parentheses, string and number literals, true, false,
// null and {plugin.method key="v"} callback references. They are parsed and
// evaluated natively; nothing is ever executed as code.
//
// # Truthiness
//
// null, false, 0, "", "0" and empty collections are false. Everything else
// is true. Variables render true as "1" and false or null as "".
//
// # Pass Order
//
// Each Parse strips comments, hides noparse regions, hides nested blocks,
// evaluates conditionals, substitutes variables and expands loops, and
// finally dispatches the remaining tags to the callback. Loop iterations and
// Session.Parse calls made by callbacks repeat the same passes with their
// own context, merged over the root data.
//
// # Callbacks
//
//	cb := func(s *lex.Session, tag lex.Tag) (string, error) {
//	    switch tag.Name {
//	    case "format.upper":
//	        inner, err := s.Parse(tag.Content, lex.Null())
//	        return strings.ToUpper(inner), err
//	    }
//	    return "", nil
//	}
//
// Errors returned by a callback stop the parse and come back wrapped in a
// *CallbackError. Malformed conditions produce a *ParseError, and nesting
// deeper than Config.MaxRenderDepth produces an error matching ErrMaxDepth.
//
// # Validation
//
// ValidateTemplate reports unbalanced conditionals, malformed conditions and
// odd tags with line and column, without rendering. ExtractReferences lists
// the variables, loops, callbacks and recursive keys a template uses.
//
// # Configuration
//
// Configuration is read from LEX_* environment variables (see
// ConfigFromEnvironment) and can be overridden per parser with options:
//
//	p := lex.NewWithOptions(
//	    lex.WithScopeGlue(":"),
//	    lex.WithCache(512, time.Minute),
//	    lex.WithMetrics(prometheus.DefaultRegisterer),
//	)
package lex
