package manifest

import "strings"

// ToPascalCase converts a string to PascalCase.
// "my-app" -> "MyApp", "models" -> "Models", "myApp" -> "MyApp"
func ToPascalCase(s string) string {
	var sb strings.Builder
	upper := true
	for i, r := range s {
		switch {
		case r == '-' || r == '_' || r == '.' || r == ' ':
			upper = true
			continue
		case i > 0 && r >= 'A' && r <= 'Z':
			prev := s[i-1]
			upper = upper || (prev >= 'a' && prev <= 'z')
		}
		if upper {
			sb.WriteString(strings.ToUpper(string(r)))
			upper = false
		} else {
			sb.WriteString(strings.ToLower(string(r)))
		}
	}
	return sb.String()
}

// MixinName derives the internal name of the project's mixin class, for
// example "demo-app" -> "demo_app/DemoAppMixin".
func MixinName(project string) string {
	if project == "" {
		return "weave/mixin/Mixin"
	}
	pkg := strings.ToLower(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(project))
	return pkg + "/" + ToPascalCase(project) + "Mixin"
}

// runtimePackages hold classes the injected code links against. They
// cannot be instrumented.
var runtimePackages = []string{
	"weave/lang/",
	"weave/callback/",
	"weave/injection/",
}

// IsRuntimeClass reports whether the internal class name belongs to a
// runtime package.
func IsRuntimeClass(name string) bool {
	for _, p := range runtimePackages {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
