package source

import (
	"context"

	"github.com/kholm/healthpipe/internal/record"
)

// Food-log member names seen across export versions of the nutrition app.
var foodLogMemberNames = []string{"Food Log.csv", "food-logs.csv"}

// LoseItReader streams the food-log member of a nutrition-app export ZIP.
// The member is resolved by case-insensitive filename match; its absence is
// fatal for this source only.
type LoseItReader struct {
	ZipPath string
}

func NewLoseItReader(zipPath string) *LoseItReader {
	return &LoseItReader{ZipPath: zipPath}
}

func (r *LoseItReader) Source() string { return LoseIt }

func (r *LoseItReader) Each(ctx context.Context, fn func(Raw) error) error {
	member, closeArchive, err := openArchiveMember(r.ZipPath, foodLogMemberNames...)
	if err != nil {
		return unavailable(LoseIt, err)
	}
	defer closeArchive()

	return eachCSVRow(ctx, LoseIt, member, record.KindFood, fn)
}
