package validator

import (
	"errors"
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// TagReferralRef 推荐码或推广短名的绑定标签
const TagReferralRef = "referral_ref"

// 推荐码（DLXxxxxxx）与推广短名共用的宽松格式，严格的短名规则在 service 层校验
var referralRefPattern = regexp.MustCompile(`^[A-Za-z0-9-]{3,64}$`)

// Register 在 gin 的 validator 引擎上注册自定义标签
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	return v.RegisterValidation(TagReferralRef, referralRef)
}

func referralRef(fl validator.FieldLevel) bool {
	return referralRefPattern.MatchString(fl.Field().String())
}
