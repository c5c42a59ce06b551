package secretdetect

// DefaultPlaceholder replaces redacted secrets.
const DefaultPlaceholder = "REDACTED"

// Redact replaces detected secrets in the content with DefaultPlaceholder.
func Redact(content string, matches []SecretMatch) string {
	return RedactWithPlaceholder(content, DefaultPlaceholder, matches)
}

// RedactWithPlaceholder replaces each match, as returned by Scan, with placeholder.
func RedactWithPlaceholder(content string, placeholder string, matches []SecretMatch) string {
	if len(matches) == 0 {
		return content
	}

	out := make([]byte, 0, len(content))
	cursor := 0
	for _, m := range matches {
		if m.Start < cursor || m.End > len(content) || m.Start > m.End {
			continue
		}
		out = append(out, content[cursor:m.Start]...)
		out = append(out, placeholder...)
		cursor = m.End
	}
	out = append(out, content[cursor:]...)
	return string(out)
}
