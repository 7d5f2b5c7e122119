package models

// Community is a group users join. The communities a viewer has joined
// bound which posts may appear in that viewer's feed.
type Community struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	ImageURL        string `json:"imageUrl"`
	MemberCount     int    `json:"memberCount"`
	PostCount       int    `json:"postCount"`
	ViewerHasJoined bool   `json:"viewerHasJoined"`
}

// EntityID implements state.Entity.
func (c Community) EntityID() string { return c.ID }
