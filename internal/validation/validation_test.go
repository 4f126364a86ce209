package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listingForm struct {
	Title     string  `json:"title" validate:"required,min=3,max=100"`
	Price     float64 `json:"price" validate:"gte=0,lte=1000000"`
	Category  string  `json:"category" validate:"required,category"`
	Condition string  `json:"condition" validate:"required,condition"`
	Status    string  `json:"status,omitempty" validate:"omitempty,listing_status"`
}

func TestStruct_Valid(t *testing.T) {
	err := Struct(listingForm{Title: "Bike", Price: 100, Category: "Home & Garden", Condition: "Like New"})
	assert.NoError(t, err)
}

func TestStruct_FieldErrors(t *testing.T) {
	err := Struct(listingForm{Title: "ab", Price: -1, Category: "Toys", Condition: "Broken", Status: "deleted"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "min=3", verr.Fields["title"])
	assert.Equal(t, "gte=0", verr.Fields["price"])
	assert.Equal(t, "category", verr.Fields["category"])
	assert.Equal(t, "condition", verr.Fields["condition"])
	assert.Equal(t, "listing_status", verr.Fields["status"])
}

func TestStruct_MessageLengthCountsCharacters(t *testing.T) {
	type msg struct {
		Content string `json:"content" validate:"required,max=5"`
	}
	assert.NoError(t, Struct(msg{Content: "héllo"}))
	assert.Error(t, Struct(msg{Content: "héllo!"}))
	assert.Error(t, Struct(msg{Content: ""}))
}

func TestField(t *testing.T) {
	err := Field("recipient_id", "self")
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Contains(t, err.Error(), "recipient_id: self")
}
