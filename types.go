package main

import (
	"time"
)

type Album struct {
	ID        uint64    `json:"id"`
	Sequence  uint64    `json:"sequence" gorm:"index"`
	Title     string    `json:"title" gorm:"not null"`
	Artist    string    `json:"artist" gorm:"not null"`
	Genre     *string   `json:"genre"`
	Year      *string   `json:"year"`
	CoverURL  *string   `json:"cover_url"`
	Tracklist *string   `json:"tracklist"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Album) String() string {
	str := `"` + a.Title + `"`
	if a.Artist != "" {
		str += ` by ` + a.Artist
	}
	return str
}

// AlbumMetadata caches the last resolved metadata of an album. ReleaseID
// holds the id of whichever provider is named in Source.
type AlbumMetadata struct {
	ID        uint64    `json:"-"`
	AlbumID   uint64    `json:"album_id" gorm:"uniqueIndex;not null"`
	ReleaseID string    `json:"release_id"`
	CoverURL  *string   `json:"cover_url"`
	Year      *string   `json:"year"`
	Tracks    []string  `json:"tracks" gorm:"serializer:json"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AlbumMetadata) TableName() string {
	return "album_metadata"
}

type Rating struct {
	ID         uint64    `json:"id"`
	AlbumID    uint64    `json:"album_id" gorm:"uniqueIndex:idx_ratings_album_profile;not null"`
	ProfileKey string    `json:"profile_key" gorm:"uniqueIndex:idx_ratings_album_profile;not null"`
	Score      float64   `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Note struct {
	ID         uint64    `json:"id"`
	AlbumID    uint64    `json:"album_id" gorm:"uniqueIndex:idx_notes_album_profile;not null"`
	ProfileKey string    `json:"profile_key" gorm:"uniqueIndex:idx_notes_album_profile;not null"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// profileFilter narrows rating and note reads. Zero values match everything.
type profileFilter struct {
	AlbumID    uint64
	ProfileKey string
}
