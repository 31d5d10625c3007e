package visa

import (
	"goimomi/models"

	"gorm.io/gorm"
)

// Applications own applicants, applicants own additional documents. These
// helpers walk that tree inside a delete transaction.

func applicationFiles(tx *gorm.DB, applicationIDs []uint) ([]string, error) {
	if len(applicationIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	if err := tx.Model(&models.VisaApplicant{}).Where("application_id IN ?", applicationIDs).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return applicantFiles(tx, ids)
}

func applicantFiles(tx *gorm.DB, applicantIDs []uint) ([]string, error) {
	if len(applicantIDs) == 0 {
		return nil, nil
	}
	var applicants []models.VisaApplicant
	if err := tx.Select("passport_front", "photo").Where("id IN ?", applicantIDs).Find(&applicants).Error; err != nil {
		return nil, err
	}
	var docs []string
	if err := tx.Model(&models.VisaAdditionalDocument{}).Where("applicant_id IN ?", applicantIDs).Pluck("file", &docs).Error; err != nil {
		return nil, err
	}

	var files []string
	for _, a := range applicants {
		for _, f := range []string{a.PassportFront, a.Photo} {
			if f != "" {
				files = append(files, f)
			}
		}
	}
	for _, f := range docs {
		if f != "" {
			files = append(files, f)
		}
	}
	return files, nil
}

func deleteApplications(tx *gorm.DB, applicationIDs []uint) error {
	if len(applicationIDs) == 0 {
		return nil
	}
	var ids []uint
	if err := tx.Model(&models.VisaApplicant{}).Where("application_id IN ?", applicationIDs).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if err := deleteApplicants(tx, ids); err != nil {
		return err
	}
	return tx.Where("id IN ?", applicationIDs).Delete(&models.VisaApplication{}).Error
}

func deleteApplicants(tx *gorm.DB, applicantIDs []uint) error {
	if len(applicantIDs) == 0 {
		return nil
	}
	if err := tx.Where("applicant_id IN ?", applicantIDs).Delete(&models.VisaAdditionalDocument{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", applicantIDs).Delete(&models.VisaApplicant{}).Error
}
