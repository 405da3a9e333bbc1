package repo

import (
	"time"

	"gorm.io/gorm"
)

type GormRepo struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (r *GormRepo) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}
