package account

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/schoolportal/core"
)

var (
	kindTag  = "kind"
	kindText = "invalid account kind"

	// password policy; it only applies to passwords set from now on, never at login
	pwdMinLen     = 6
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = "password must contain at least %d characters"

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password is too similar to the username"
)

func init() {
	if core.Conf.Password.MinLength > 0 {
		pwdMinLen = core.Conf.Password.MinLength
	}

	_ = core.Validate.RegisterValidation(kindTag, kindValidation)
	core.RegisterCustomTranslation(kindTag, kindText)

	core.Validate.RegisterStructValidation(accountStructValidation, NewAccount{}, PasswordReset{})
	core.RegisterCustomTranslation(pwdMinLenTag, fmt.Sprintf(pwdMinLenText, pwdMinLen))
	core.RegisterCustomTranslation(pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(pwdAttrSimTag, pwdAttrSimText)
}

// Custom Validators

func kindValidation(fl validator.FieldLevel) bool {
	return Kind(fl.Field().String()).Valid()
}

// accountStructValidation does struct level validation on NewAccount and PasswordReset structs.
func accountStructValidation(sl validator.StructLevel) {
	switch v := sl.Current().Interface().(type) {
	case NewAccount:
		if v.Kind.HasStatus() && v.Gender == "" {
			sl.ReportError(v.Gender, "gender", "Gender", "required", "")
		}
		validatePassword(v.Password, v.Username, sl)
	case PasswordReset:
		validatePassword(v.Password, v.Username, sl)
	}
}

// validatePassword applies the password policy:
// - minLen: password.minLength
// - no whitespace
// - no username similarity
func validatePassword(pwd, uname string, sl validator.StructLevel) {
	if pwd == "" {
		return // reported by `required`
	}
	reportErr := func(tag string) {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}

	if len([]rune(pwd)) < pwdMinLen {
		reportErr(pwdMinLenTag)
		return
	}
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
	}
	if passwordSimilarity(pwd, uname) >= pwdMaxSim {
		reportErr(pwdAttrSimTag)
	}
}

func passwordSimilarity(pwd, attr string) float64 {
	if attr == "" {
		return 0
	}
	pwd, attr = strings.ToLower(pwd), strings.ToLower(attr)
	return difflib.NewMatcher(strings.Split(pwd, ""), strings.Split(attr, "")).QuickRatio()
}
