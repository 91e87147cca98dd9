package organizer

import (
	"math"
	"strconv"

	"dcmorg/internal/services"
	"dcmorg/internal/textutil"
)

// BucketName maps a series label and slice thickness to a folder name.
// Thickness is truncated toward zero. ok is false when thickness is absent or
// exactly zero; such files are not bucketed.
func BucketName(label string, thickness float64, hasThickness bool) (name string, ok bool, err error) {
	if !hasThickness || thickness == 0 {
		return "", false, nil
	}
	if math.IsNaN(thickness) || math.IsInf(thickness, 0) {
		return "", false, services.Wrap(
			services.ErrValidation,
			"organizing",
			"bucket",
			"slice thickness "+strconv.FormatFloat(thickness, 'g', -1, 64)+" is not finite",
			nil,
		)
	}
	whole := math.Trunc(thickness)
	if whole == 0 {
		// -0.5 truncates to negative zero; print it as 0.
		whole = 0
	}
	return textutil.SanitizeName(label) + "_" + strconv.FormatFloat(whole, 'f', 0, 64) + "mm", true, nil
}
