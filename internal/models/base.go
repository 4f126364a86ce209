package models

import (
	"github.com/Davzs/adezz/internal/utils"
)

// Base carries the document id shared by every stored model.
type Base struct {
	ID utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
}

func NewBase() Base {
	return Base{
		ID: utils.NewSixID(),
	}
}
