package domain

import (
	"slices"
	"strings"
	"time"
)

type Category string

const (
	CategoryDocument Category = "document"
	CategoryImage    Category = "image"
	CategoryVideo    Category = "video"
	CategoryAudio    Category = "audio"
	CategoryOther    Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryDocument, CategoryImage, CategoryVideo, CategoryAudio, CategoryOther}

func ParseCategory(raw string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if slices.Contains(Categories, c) {
		return c, true
	}
	return "", false
}

// Identity is the already-authenticated caller. Every core operation takes
// it explicitly.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

// FileRecord is the metadata row for one stored object. ObjectKey, Size,
// OwnerID, Extension and Category are fixed at creation; only Name and
// SharedWith change afterwards.
type FileRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Extension    string    `json:"extension"`
	Category     Category  `json:"type"`
	ObjectKey    string    `json:"object_key"`
	ThumbnailKey string    `json:"thumbnail_key,omitempty"`
	Checksum     string    `json:"checksum"`
	Size         int64     `json:"size"`
	OwnerID      string    `json:"owner_id"`
	SharedWith   []string  `json:"users"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Derived on read, never persisted.
	URL          string `json:"url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Owner        *User  `json:"owner,omitempty"`
}

// VisibleTo reports whether id may see the record: owner, or email listed
// in SharedWith.
func (r FileRecord) VisibleTo(id Identity) bool {
	if r.OwnerID == id.UserID {
		return true
	}
	return id.Email != "" && slices.Contains(r.SharedWith, NormalizeEmail(id.Email))
}

func (r FileRecord) OwnedBy(id Identity) bool {
	return r.OwnerID == id.UserID
}

// FilePatch is a partial update; nil fields are left alone.
type FilePatch struct {
	Name       *string
	SharedWith *[]string
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeEmails lower-cases, trims, drops empties and de-duplicates. The
// result is sorted so stored sets compare stably.
func NormalizeEmails(emails []string) []string {
	out := make([]string, 0, len(emails))
	seen := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		n := NormalizeEmail(e)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
