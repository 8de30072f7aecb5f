package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/sakif/usuarios-api/internal/apperror"
)

const maxBodyBytes = 1 << 20

// validate reports field names by their json tag so error messages use the
// names clients send.
var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// decodeBody fills dst from the request body. JSON bodies are decoded when
// Content-Type is application/json; anything else is read as form values
// (urlencoded or multipart) keyed by the same json tag names. An empty body
// leaves dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		err := json.NewDecoder(r.Body).Decode(dst)
		if err != nil && !errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("", "invalid JSON body")
		}
		return nil
	}

	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(maxBodyBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return apperror.ValidationFailed("", "invalid form body")
	}

	values := make(map[string]any, len(r.PostForm))
	for key, vs := range r.PostForm {
		if len(vs) > 0 {
			values[key] = vs[0]
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           dst,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(values); err != nil {
		return apperror.ValidationFailed("", "invalid form body")
	}
	return nil
}

// validateRequest runs the struct's validate tags. Missing required fields
// are reported together, the first one as the error's field.
func validateRequest(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}
	if len(missing) > 0 {
		return apperror.ValidationFailed(missing[0], "missing required field: "+strings.Join(missing, ", "))
	}
	return apperror.ValidationFailed(invalid[0], "invalid field: "+strings.Join(invalid, ", "))
}
