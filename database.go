package main

import (
	"context"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"albumlog/internal/metadata"
)

type database struct {
	db *gorm.DB
}

// newDatabase opens a postgres database when dsn looks like a postgres DSN,
// and a sqlite file at dsn otherwise.
func newDatabase(dsn string) (*database, error) {
	var dialector gorm.Dialector
	if isPostgresDSN(dsn) {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(&Album{}, &AlbumMetadata{}, &Rating{}, &Note{})
	if err != nil {
		return nil, err
	}

	return &database{
		db: db,
	}, nil
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.HasPrefix(dsn, "host=")
}

func (d *database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NextSequence returns the current maximum sequence plus one. It is not
// safe against concurrent creators; sequences are display data only.
func (d *database) NextSequence(ctx context.Context) (uint64, error) {
	var max uint64
	err := d.db.WithContext(ctx).Model(&Album{}).Select("COALESCE(MAX(sequence), 0)").Scan(&max).Error
	return max + 1, err
}

func (d *database) CreateAlbum(ctx context.Context, album *Album) error {
	return d.db.WithContext(ctx).Create(album).Error
}

func (d *database) UpdateAlbum(ctx context.Context, album *Album) error {
	return d.db.WithContext(ctx).Save(album).Error
}

func (d *database) GetAlbums(ctx context.Context) ([]*Album, error) {
	albums := []*Album{}
	return albums, d.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "sequence"}, Desc: true}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: true}).
		Find(&albums).Error
}

func (d *database) GetAlbum(ctx context.Context, id uint64) (*Album, error) {
	var album *Album
	return album, d.db.WithContext(ctx).First(&album, id).Error
}

func (d *database) GetMetadata(ctx context.Context, albumID uint64) (*metadata.Record, error) {
	var rows []*AlbumMetadata
	err := d.db.WithContext(ctx).Where("album_id = ?", albumID).Limit(1).Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}

	row := rows[0]
	return &metadata.Record{
		AlbumID:   row.AlbumID,
		ReleaseID: row.ReleaseID,
		CoverURL:  deref(row.CoverURL),
		Year:      deref(row.Year),
		Tracks:    row.Tracks,
		Source:    row.Source,
	}, nil
}

func (d *database) PutMetadata(ctx context.Context, rec *metadata.Record) error {
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "album_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"release_id", "cover_url", "year", "tracks", "source", "updated_at"}),
	}).Create(&AlbumMetadata{
		AlbumID:   rec.AlbumID,
		ReleaseID: rec.ReleaseID,
		CoverURL:  optional(rec.CoverURL),
		Year:      optional(rec.Year),
		Tracks:    rec.Tracks,
		Source:    rec.Source,
	}).Error
}

func (d *database) GetRatings(ctx context.Context, f profileFilter) ([]*Rating, error) {
	ratings := []*Rating{}
	return ratings, f.apply(d.db.WithContext(ctx)).Order("id").Find(&ratings).Error
}

// UpsertRating inserts or replaces the score of one profile for one album.
func (d *database) UpsertRating(ctx context.Context, rating *Rating) (*Rating, error) {
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "album_id"}, {Name: "profile_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
	}).Create(rating).Error
	if err != nil {
		return nil, err
	}

	var out *Rating
	return out, d.db.WithContext(ctx).
		Where("album_id = ? AND profile_key = ?", rating.AlbumID, rating.ProfileKey).
		First(&out).Error
}

func (d *database) DeleteRating(ctx context.Context, albumID uint64, profileKey string) (int64, error) {
	res := d.db.WithContext(ctx).
		Where("album_id = ? AND profile_key = ?", albumID, profileKey).
		Delete(&Rating{})
	return res.RowsAffected, res.Error
}

func (d *database) GetNotes(ctx context.Context, f profileFilter) ([]*Note, error) {
	notes := []*Note{}
	return notes, f.apply(d.db.WithContext(ctx)).Order("id").Find(&notes).Error
}

// UpsertNote inserts or replaces the note of one profile for one album.
func (d *database) UpsertNote(ctx context.Context, note *Note) (*Note, error) {
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "album_id"}, {Name: "profile_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
	}).Create(note).Error
	if err != nil {
		return nil, err
	}

	var out *Note
	return out, d.db.WithContext(ctx).
		Where("album_id = ? AND profile_key = ?", note.AlbumID, note.ProfileKey).
		First(&out).Error
}

func (f profileFilter) apply(db *gorm.DB) *gorm.DB {
	if f.AlbumID != 0 {
		db = db.Where("album_id = ?", f.AlbumID)
	}
	if f.ProfileKey != "" {
		db = db.Where("profile_key = ?", f.ProfileKey)
	}
	return db
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
