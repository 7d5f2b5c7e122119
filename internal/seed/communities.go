package seed

import (
	"questline/internal/mockapi"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BuiltInCommunity is a permanent community present in every environment.
type BuiltInCommunity struct {
	Name        string
	Category    string
	Description string
}

// BuiltInCommunities defines the permanent communities, one or more per
// achievement category.
var BuiltInCommunities = []BuiltInCommunity{
	{Name: "Morning Movers", Category: "Health", Description: "Sleep, water, and daily walks."},
	{Name: "Mindful Minutes", Category: "Health", Description: "Meditation and mental health check-ins."},
	{Name: "The Reading Room", Category: "Learning", Description: "Books, courses, and study streaks."},
	{Name: "Polyglots", Category: "Learning", Description: "Language learners keeping each other honest."},
	{Name: "Career Climbers", Category: "Career", Description: "Job hunts, promotions, and side projects."},
	{Name: "Budget Builders", Category: "Finance", Description: "Saving goals and spending check-ins."},
	{Name: "Couch to 5K", Category: "Fitness", Description: "Running plans for every pace."},
	{Name: "Iron Club", Category: "Fitness", Description: "Strength training logs."},
	{Name: "Small Wins", Category: "Personal", Description: "Habits, hobbies, and everything else."},
}

// Communities upserts the built-in communities by name. Safe to run repeatedly.
func Communities(db *gorm.DB) ([]mockapi.Community, error) {
	out := make([]mockapi.Community, 0, len(BuiltInCommunities))
	for _, item := range BuiltInCommunities {
		community := mockapi.Community{
			Name:        item.Name,
			Category:    item.Category,
			Description: item.Description,
			ImageURL:    "https://picsum.photos/seed/" + slug(item.Name) + "/600/400",
		}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"category", "description", "image_url"}),
		}).Create(&community).Error
		if err != nil {
			return nil, err
		}
		// Some drivers report no id for an upsert that only updated.
		if community.ID == 0 {
			if err := db.Where("name = ?", item.Name).First(&community).Error; err != nil {
				return nil, err
			}
		}
		out = append(out, community)
	}
	return out, nil
}

func slug(name string) string {
	b := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b = append(b, c)
		case c >= 'A' && c <= 'Z':
			b = append(b, c+'a'-'A')
		case c == ' ' && len(b) > 0 && b[len(b)-1] != '-':
			b = append(b, '-')
		}
	}
	return string(b)
}
