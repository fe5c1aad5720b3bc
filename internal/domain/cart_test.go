package domain

import "testing"

func TestCartLine_Validate(t *testing.T) {
	line := CartLine{ProductID: "tee-classic", ColorKey: "black", Size: "M", Qty: 1}
	if errs := line.Validate(); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}

	t.Run("missing product", func(t *testing.T) {
		bad := line
		bad.ProductID = ""
		requireHasError(t, bad.Validate(), ErrLineProductRequired)
	})

	t.Run("missing color", func(t *testing.T) {
		bad := line
		bad.ColorKey = ""
		requireHasError(t, bad.Validate(), ErrLineColorRequired)
	})

	t.Run("zero qty", func(t *testing.T) {
		bad := line
		bad.Qty = 0
		requireHasError(t, bad.Validate(), ErrLineQtyInvalid)
	})

	t.Run("negative qty", func(t *testing.T) {
		bad := line
		bad.Qty = -2
		requireHasError(t, bad.Validate(), ErrLineQtyInvalid)
	})

	t.Run("size optional", func(t *testing.T) {
		sizeless := line
		sizeless.Size = ""
		if errs := sizeless.Validate(); len(errs) != 0 {
			t.Fatalf("expected sizeless line to validate, got %v", errs)
		}
	})
}

func TestValidateCart(t *testing.T) {
	requireHasError(t, ValidateCart(nil), ErrCartEmpty)

	lines := []CartLine{
		{ProductID: "tee-classic", ColorKey: "black", Size: "M", Qty: 1},
		{ProductID: "", ColorKey: "navy", Qty: 0},
	}
	errs := ValidateCart(lines)
	requireHasError(t, errs, ErrLineProductRequired)
	requireHasError(t, errs, ErrLineQtyInvalid)
}
