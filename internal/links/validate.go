package links

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sundayezeilo/shortlinks/codegen"
	"github.com/sundayezeilo/shortlinks/internal/validation"
)

const MaxURLLength = 2048

var codeRule = fmt.Sprintf("alphanum,min=%d,max=%d", codegen.MinLength, codegen.MaxLength)

// ValidateCode checks the code contract: 6 to 8 ASCII letters or digits.
func ValidateCode(code string) error {
	if code == "" {
		return fmt.Errorf("%w: code cannot be empty", ErrInvalidCode)
	}
	if err := validation.Var(code, codeRule); err != nil {
		return fmt.Errorf("%w: code must be %d-%d alphanumeric characters", ErrInvalidCode, codegen.MinLength, codegen.MaxLength)
	}
	return nil
}

// ValidateTargetURL requires an absolute URL with a scheme and a host.
func ValidateTargetURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("%w: url cannot be empty", ErrInvalidURL)
	}
	if len(rawURL) > MaxURLLength {
		return fmt.Errorf("%w: url too long (max %d characters)", ErrInvalidURL, MaxURLLength)
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: invalid url format", ErrInvalidURL)
	}
	if parsedURL.Scheme == "" || !parsedURL.IsAbs() {
		return fmt.Errorf("%w: url must include a scheme", ErrInvalidURL)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%w: url must include a host", ErrInvalidURL)
	}
	return nil
}
