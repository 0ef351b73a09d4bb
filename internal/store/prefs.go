package store

// Prefs is the semi-structured user preference map. Recognized keys:
// full_name, beginner, fairplay, ready, ready_timed, fanfare, audio,
// friend, has_paid, locale, chat_disabled. Unknown keys round-trip
// untouched so older clients keep their settings.
type Prefs map[string]any

// DefaultPrefs returns the preference map assigned at account creation.
func DefaultPrefs() Prefs {
	return Prefs{
		"beginner": true,
		"fairplay": false,
	}
}

// Merged returns a copy of p with every key of other laid on top.
func (p Prefs) Merged(other Prefs) Prefs {
	out := make(Prefs, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// GetString returns the string value for key, or "" when absent or not a
// string.
func (p Prefs) GetString(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// GetBool returns the bool value for key, or def when absent or not a bool.
func (p Prefs) GetBool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

// FullName returns the full_name preference, or "".
func (p Prefs) FullName() string { return p.GetString("full_name") }

// PayingFriend reports whether the user is a paid supporter
// (friend && has_paid).
func (p Prefs) PayingFriend() bool {
	return p.GetBool("friend", false) && p.GetBool("has_paid", false)
}
