package session

import (
	"context"
	"strings"
)

func ValidateJoinTable(ctx context.Context, req JoinTableRequest) []string {
	var errors []string

	if strings.TrimSpace(req.TableNumber) == "" {
		errors = append(errors, "table_number is required")
	}

	return errors
}

func ValidateAddCartItem(ctx context.Context, req AddCartItemRequest) []string {
	var errors []string

	if strings.TrimSpace(req.ProductID) == "" {
		errors = append(errors, "product_id is required")
	}

	if strings.TrimSpace(req.Name) == "" {
		errors = append(errors, "name is required")
	}

	if !validPrice(req.Price) {
		errors = append(errors, "price must be a positive number")
	}

	if req.Quantity < 0 || req.Quantity > MaxItemQuantity {
		errors = append(errors, "quantity must be between 1 and 99")
	}

	return errors
}

func ValidateCloseTable(ctx context.Context, req CloseTableRequest) []string {
	var errors []string

	if req.SplitMethod != "" && !SplitMethod(req.SplitMethod).Valid() {
		errors = append(errors, "invalid split_method")
	}

	return errors
}
