package itinerary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"goimomi/filemgr"
	"goimomi/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BackfillResult struct {
	Scanned int
	Linked  int
	Created int
	Skipped int
}

func (r BackfillResult) String() string {
	return fmt.Sprintf("%d days without a master: %d linked, %d new masters, %d skipped", r.Scanned, r.Linked, r.Created, r.Skipped)
}

// Backfill links every itinerary day that has no master template. A master
// whose name equals the day title is reused; otherwise one is created from the
// day, with its own copy of the day image. Days without a title are skipped.
func Backfill(ctx context.Context, gdb *gorm.DB, files *filemgr.Store) (BackfillResult, error) {
	var res BackfillResult
	var batch *filemgr.Batch
	if files != nil {
		batch = files.NewBatch()
	}

	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var days []models.ItineraryDay
		if err := tx.Where("master_template_id IS NULL").Order("id").Find(&days).Error; err != nil {
			return err
		}
		res.Scanned = len(days)

		for i := range days {
			day := &days[i]
			title := strings.TrimSpace(day.Title)
			if title == "" {
				res.Skipped++
				continue
			}

			var master models.ItineraryMaster
			err := tx.Where("name = ?", title).Order("id").First(&master).Error
			switch {
			case err == nil:
				res.Linked++
			case errors.Is(err, gorm.ErrRecordNotFound):
				master = models.ItineraryMaster{
					Name:        models.Truncate(title, models.TitleMaxLen),
					Title:       models.Truncate(title, models.TitleMaxLen),
					Description: day.Description,
				}
				if day.Image != "" && batch != nil {
					img, err := batch.Copy(day.Image, filemgr.FolderItineraryMaster)
					if err != nil {
						return fmt.Errorf("copy image of day %d: %w", day.ID, err)
					}
					master.Image = img
				}
				if err := tx.Omit(clause.Associations).Create(&master).Error; err != nil {
					return err
				}
				res.Created++
			default:
				return err
			}

			if err := tx.Model(day).Update("master_template_id", master.ID).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if batch != nil {
			batch.Rollback()
		}
		return BackfillResult{}, err
	}
	return res, nil
}
