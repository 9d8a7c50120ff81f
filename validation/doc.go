// Package validation provides input validation for configuration and order
// requests.
//
// It supports both struct tag validation (using the validator library) and
// programmatic validation with error collection:
//
//	type OrderRequest struct {
//	    Symbol string `validate:"required,max=12"`
//	    Qty    int    `validate:"required,gt=0"`
//	}
//	err := validation.Struct(req)
//
//	v := validation.New()
//	v.Required("symbol", req.Symbol).Positive("qty", req.Qty)
//	err := v.Validate()
package validation
