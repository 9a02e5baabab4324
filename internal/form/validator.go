// Package form は入力フォームの検証ルールを提供する。
// 検証に失敗した入力はリモートAPIへ送信しない。
package form

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/blogclient/internal/model"
)

var (
	// looseEmailPattern はサインアップ/サインインで使う緩いメール形式。
	looseEmailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)
	// strictEmailPattern はプロフィール編集で使う厳密なメール形式。
	strictEmailPattern = regexp.MustCompile(`(?i)^[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "looseemail", func(fl validator.FieldLevel) bool {
		return looseEmailPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "strictemail", func(fl validator.FieldLevel) bool {
		return strictEmailPattern.MatchString(fl.Field().String())
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic("failed to register validation " + tag + ": " + err.Error())
	}
}

// messages は "フィールド名.タグ" からエラーメッセージへの対応表。
type messages map[string]string

// run は構造体を検証し、失敗したフィールドごとに最初の1件のメッセージを返す。
// 全て成功した場合はnilを返す。
func run(in any, msgs messages) model.FieldErrors {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return model.FieldErrors{"form": {err.Error()}}
	}

	fields := make(model.FieldErrors)
	for _, fe := range verrs {
		field := fe.Field()
		if fields.Has(field) {
			continue
		}
		msg, ok := msgs[field+"."+fe.Tag()]
		if !ok {
			msg = field + " is invalid"
		}
		fields.Add(field, msg)
	}
	return fields
}
