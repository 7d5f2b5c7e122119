package models

// Viewer is the possibly-anonymous identity a call is made on behalf of.
// The zero value is anonymous; there is no default user.
type Viewer struct {
	userID string
}

// Anonymous returns a viewer with no identity.
func Anonymous() Viewer {
	return Viewer{}
}

// SignedIn returns a viewer for userID. An empty id yields an anonymous viewer.
func SignedIn(userID string) Viewer {
	return Viewer{userID: userID}
}

// UserID returns the viewer's id and whether one is present.
func (v Viewer) UserID() (string, bool) {
	return v.userID, v.userID != ""
}

// IsAnonymous reports whether the viewer has no identity.
func (v Viewer) IsAnonymous() bool {
	return v.userID == ""
}
