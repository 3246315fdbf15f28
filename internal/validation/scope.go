package validation

// maxScopeToken acota cada scope; los proveedores usan URLs como scopes (Google).
const maxScopeToken = 256

// ValidScopeName valida un scope-token de OAuth 2.0:
// 1*( %x21 / %x23-5B / %x5D-7E ), es decir ASCII visible sin comillas dobles ni backslash.
// Acepta "user:email", "User.Read" y "https://www.googleapis.com/auth/drive".
func ValidScopeName(name string) bool {
	if name == "" || len(name) > maxScopeToken {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x21 || c > 0x7e || c == '"' || c == '\\' {
			return false
		}
	}
	return true
}
