package store

// Well-known keys written by the application shell.
const (
	KeyRoute             = "route"
	KeyParams            = "params"
	KeyTransitioning     = "transitioning"
	KeyTransition        = "transition"
	KeyNavStyle          = "navStyle"
	KeyTheme             = "theme"
	KeyItems             = "items"
	KeyNotifications     = "notifications"
	KeyRedirectAfterAuth = "redirectAfterAuth"
)

// Transition describes the visual transition requested for a view swap.
type Transition struct {
	Type      string `json:"type" yaml:"type"`
	Direction string `json:"direction" yaml:"direction"`
}

// defaultValues returns the keys every store starts with.
func defaultValues() map[string]any {
	return map[string]any{
		KeyRoute:         nil,
		KeyNavStyle:      "dock",
		KeyTransition:    Transition{Type: "fade", Direction: "forward"},
		KeyTheme:         "dark",
		KeyItems:         []any{},
		KeyNotifications: []Notification{},
	}
}
