package models

import (
	"slices"
	"time"
)

// DefaultTokenBalance is granted to every new account.
const DefaultTokenBalance = 10

type Location struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// User is the profile document. TelegramID is the caller-supplied identity
// token; UserID is generated once and used as the key for interactions and chats.
type User struct {
	UserID           string    `bson:"user_id" json:"user_id"`
	TelegramID       string    `bson:"telegram_id" json:"telegram_id"`
	Name             string    `bson:"name" json:"name"`
	Age              int       `bson:"age" json:"age"`
	Gender           string    `bson:"gender" json:"gender"`
	Orientation      string    `bson:"orientation" json:"orientation"`
	InterestedIn     []string  `bson:"interested_in" json:"interested_in"`
	RelationshipType []string  `bson:"relationship_type" json:"relationship_type"`
	TraitTags        []int     `bson:"selected_spokies" json:"selected_spokies"`
	Photos           []string  `bson:"profile_photos" json:"profile_photos"`
	Bio              string    `bson:"bio" json:"bio"`
	Tokens           int       `bson:"tokens" json:"tokens"`
	Location         *Location `bson:"location" json:"location"`
	IsActive         bool      `bson:"is_active" json:"is_active"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updated_at"`
}

// UserSummary is the projection returned by search and received-likes lists.
type UserSummary struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Photos    []string  `json:"profile_photos"`
	Bio       string    `json:"bio"`
	TraitTags []int     `json:"selected_spokies"`
	Location  *Location `json:"location"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		UserID:    u.UserID,
		Name:      u.Name,
		Age:       u.Age,
		Photos:    nonNil(u.Photos),
		Bio:       u.Bio,
		TraitTags: nonNil(u.TraitTags),
		Location:  u.Location,
	}
}

// FirstPhoto returns the first profile photo, or nil when there is none.
func (u *User) FirstPhoto() *string {
	if len(u.Photos) == 0 {
		return nil
	}
	p := u.Photos[0]
	return &p
}

// Clone returns a deep copy so in-memory stores never share slices with callers.
func (u User) Clone() User {
	u.InterestedIn = slices.Clone(u.InterestedIn)
	u.RelationshipType = slices.Clone(u.RelationshipType)
	u.TraitTags = slices.Clone(u.TraitTags)
	u.Photos = slices.Clone(u.Photos)
	if u.Location != nil {
		loc := *u.Location
		u.Location = &loc
	}
	return u
}

// Registration carries the profile fields of a sign-up request.
type Registration struct {
	TelegramID       string
	Name             string
	Age              int
	Gender           string
	Orientation      string
	InterestedIn     []string
	RelationshipType []string
	TraitTags        []int
	Bio              string
}

// Photo is one uploaded image awaiting storage.
type Photo struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ProfileUpdate is a partial update: nil fields are left untouched.
type ProfileUpdate struct {
	Name             *string   `json:"name"`
	Bio              *string   `json:"bio"`
	Age              *int      `json:"age"`
	Gender           *string   `json:"gender"`
	Orientation      *string   `json:"orientation"`
	InterestedIn     *[]string `json:"interested_in"`
	RelationshipType *[]string `json:"relationship_type"`
	TraitTags        *[]int    `json:"selectedSpokies"`
	Location         *Location `json:"location"`
}

// IsEmpty reports whether no field is present.
func (p ProfileUpdate) IsEmpty() bool {
	return p.Name == nil && p.Bio == nil && p.Age == nil && p.Gender == nil &&
		p.Orientation == nil && p.InterestedIn == nil && p.RelationshipType == nil &&
		p.TraitTags == nil && p.Location == nil
}

// Apply writes the present fields into u and reports whether any value changed.
// UpdatedAt is left to the caller.
func (p ProfileUpdate) Apply(u *User) bool {
	changed := false
	setString := func(dst *string, src *string) {
		if src != nil && *dst != *src {
			*dst = *src
			changed = true
		}
	}
	setString(&u.Name, p.Name)
	setString(&u.Bio, p.Bio)
	setString(&u.Gender, p.Gender)
	setString(&u.Orientation, p.Orientation)
	if p.Age != nil && u.Age != *p.Age {
		u.Age = *p.Age
		changed = true
	}
	if p.InterestedIn != nil && !slices.Equal(u.InterestedIn, *p.InterestedIn) {
		u.InterestedIn = slices.Clone(*p.InterestedIn)
		changed = true
	}
	if p.RelationshipType != nil && !slices.Equal(u.RelationshipType, *p.RelationshipType) {
		u.RelationshipType = slices.Clone(*p.RelationshipType)
		changed = true
	}
	if p.TraitTags != nil && !slices.Equal(u.TraitTags, *p.TraitTags) {
		u.TraitTags = slices.Clone(*p.TraitTags)
		changed = true
	}
	if p.Location != nil && (u.Location == nil || *u.Location != *p.Location) {
		loc := *p.Location
		u.Location = &loc
		changed = true
	}
	return changed
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
