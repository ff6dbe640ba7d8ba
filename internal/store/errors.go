package store

import "errors"

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateCategory = errors.New("category name already exists")
	ErrCategoryInUse     = errors.New("category has activities and cannot be deleted")
	ErrDuplicateReport   = errors.New("report already exists for period")
)
