package models

import (
	"time"

	"github.com/Davzs/adezz/internal/utils"
)

// ActivityAction is the kind of an activity log entry.
type ActivityAction string

const (
	ActivityCreate  ActivityAction = "create"
	ActivityEdit    ActivityAction = "edit"
	ActivityDelete  ActivityAction = "delete"
	ActivityView    ActivityAction = "view"
	ActivitySave    ActivityAction = "save"
	ActivityUnsave  ActivityAction = "unsave"
	ActivityMessage ActivityAction = "message"
)

// ActivityTarget is the kind of entity an activity entry refers to.
type ActivityTarget string

const (
	TargetListing ActivityTarget = "listing"
	TargetMessage ActivityTarget = "message"
	TargetProfile ActivityTarget = "profile"
)

// ActivityEntry is one line of a user's append-only activity history.
type ActivityEntry struct {
	Action     ActivityAction    `bson:"action" json:"action"`
	TargetType ActivityTarget    `bson:"target_type" json:"target_type"`
	TargetID   utils.SixID       `bson:"target_id" json:"target_id"`
	Timestamp  time.Time         `bson:"timestamp" json:"timestamp"`
	Metadata   map[string]string `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// User represents a registered user.
type User struct {
	Base               `bson:",inline"`
	Name               string          `bson:"name" json:"name"`
	Email              string          `bson:"email" json:"email"`
	PasswordHash       string          `bson:"password,omitempty" json:"-"`
	Image              string          `bson:"image,omitempty" json:"image,omitempty"`
	ImageThumb         string          `bson:"image_thumb,omitempty" json:"image_thumb,omitempty"`
	Bio                string          `bson:"bio,omitempty" json:"bio,omitempty"`
	Location           string          `bson:"location,omitempty" json:"location,omitempty"`
	Website            string          `bson:"website,omitempty" json:"website,omitempty"`
	EmailNotifications bool            `bson:"email_notifications" json:"email_notifications"`
	PushNotifications  bool            `bson:"push_notifications" json:"push_notifications"`
	SavedListings      []utils.SixID   `bson:"saved_listings" json:"saved_listings"`
	ActivityHistory    []ActivityEntry `bson:"activity_history" json:"-"`
	IsAdmin            bool            `bson:"is_admin" json:"is_admin"`
	CreatedAt          time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `bson:"updated_at" json:"updated_at"`
}

// PublicUser is the profile shown to other users.
type PublicUser struct {
	ID        utils.SixID `json:"id"`
	Name      string      `json:"name"`
	Image     string      `json:"image,omitempty"`
	Bio       string      `json:"bio,omitempty"`
	Location  string      `json:"location,omitempty"`
	Website   string      `json:"website,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
