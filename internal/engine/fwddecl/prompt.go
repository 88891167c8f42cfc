package fwddecl

import (
	"regexp"
	"strings"
)

const systemPrompt = "You are a helpful assistant that is a C++ expert with a keen eye for detail."

const promptTemplate = `Carefully analyze the includer file and determine if the include directive for "{{included}}" (target header) in the source file "{{includer}}" can be replaced with forward declarations.
Think step-by-step about every use of a named symbol from the target header. Only analyze the provided code, never hypotheticals.

Assume the rest of the code base follows Include What You Use (IWYU) principles. Forward declarations do not violate IWYU
as long as the includer does not directly use any symbol from the target header that requires a full definition.

An include directive can be replaced with forward declarations if:
* The includer only uses pointers, references, or return-by-values of types declared in the target header.
* The includer does not need the size or layout of any type declared in the target header.
* The includer does not use any functions, templates, or macros declared in the target header.
* The includer does not use any constants or enum values declared in the target header.
* The includer does not use any typedefs or using declarations declared in the target header.
* The includer does not use any class declared in the target header as a base class.
* The includer does not use any type declared in the target header as a member variable type, unless it is a pointer, reference, raw_ptr, or smart pointer.

These cannot be forward declared: inner classes or structs, nested enums or types, template specializations,
enum values, typedefs or using-declarations, and macros.

An incomplete type may be a function return-by-value type as long as the function is only declared, not defined.
A function is only defined if it has a function body.

Not all named symbols are in namespaces. If there is no namespace, do not wrap the symbol in one.
Usage of a using declaration requires the full definition.
Check constructor member initializer lists for usage.

Respond with a JSON object with the keys "reasoning" (string, point to specific code),
"forward_declarations" (string, only when the include can be replaced, no comments or using declarations)
and "can_replace_include" (boolean, must match the reasoning).

# Includer File: {{includer}}

` + "```cpp\n{{includer_source}}\n```" + `

# Target Header: {{included}}

` + "```cpp\n{{included_source}}\n```\n"

// BuildPrompt renders the user prompt for req.
func BuildPrompt(req Request) string {
	r := strings.NewReplacer(
		"{{includer}}", req.Includer,
		"{{included}}", req.Included,
		"{{includer_source}}", req.IncluderSource,
		"{{included_source}}", req.IncludedSource,
	)
	return r.Replace(promptTemplate)
}

type rewrite struct {
	re   *regexp.Regexp
	repl string
}

var (
	lineComment    = rewrite{regexp.MustCompile(`(?m)^\s*//[^\n]+\n+`), ""}
	forwardDecl    = rewrite{regexp.MustCompile(`(?m)^(?:enum class|class|struct) \S+(?: : \S+)?;\n+`), ""}
	emptyNamespace = rewrite{regexp.MustCompile(`(?m)^namespace \S+ \{\s+\}\s*(?://)?[^\n]+\n+\n`), ""}
	metadata       = rewrite{regexp.MustCompile(`(?m)^/\* Metadata comment[^*]+\*/\n?`), ""}

	includeDirective = rewrite{regexp.MustCompile(`(?m)^#include\s+[<"].*[">][^\n]*\n+`), ""}
	checkMacro       = rewrite{regexp.MustCompile(`(?m)^\s*D?CHECK\(.*\);\n+`), ""}
	friendClass      = rewrite{regexp.MustCompile(`(?m)^\s*friend class \S+;\n+`), ""}
	inlineBody       = rewrite{regexp.MustCompile(`(?m)^(\s*(?:const )?\S+[*&]? \S+\([^)]*\)(?: const)?) \{[^}]+\n?\s*\}\n`), "${1};\n"}
	constQualifier   = rewrite{regexp.MustCompile(`(?m)^(\s+)(?:const )?([^\n]+) const;\n`), "${1}${2};\n"}
	noinline         = rewrite{regexp.MustCompile(`(?m)^(\s*)NOINLINE ([^\n]+);\n`), "${1}${2};\n"}
)

func apply(code string, rewrites ...rewrite) string {
	for _, rw := range rewrites {
		code = rw.re.ReplaceAllString(code, rw.repl)
	}
	return strings.TrimSpace(code)
}

// MinimizeIncluder strips comments, existing forward declarations and empty
// namespaces from the includer.
func MinimizeIncluder(code string) string {
	return apply(code, lineComment, forwardDecl, emptyNamespace, metadata)
}

// MinimizeIncluded keeps only what matters for forward declaration: includes,
// checks, friends and inline bodies are removed.
func MinimizeIncluded(code string) string {
	return apply(code,
		lineComment, includeDirective, forwardDecl, checkMacro, emptyNamespace,
		friendClass, inlineBody, constQualifier, noinline, metadata)
}
