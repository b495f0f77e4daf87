package models

// Product is a catalog entry. The engine requires every field to be populated.
type Product struct {
	ID          string  `json:"id" db:"id" validate:"required"`
	Description string  `json:"description" db:"description" validate:"required,max=512"`
	Category    string  `json:"category" db:"category" validate:"required,max=128"`
	Price       float64 `json:"price" db:"price" validate:"gte=0"`
	Rating      float64 `json:"rating" db:"rating" validate:"gte=0,lte=5"`
	ImageURL    string  `json:"image_url" db:"image_url" validate:"required"`
}

type SimilarProductsResponse struct {
	ProductID string    `json:"product_id"`
	Products  []Product `json:"products"`
}
