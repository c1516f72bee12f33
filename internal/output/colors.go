package output

import "os"

const (
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiGray   = "\033[90m"
	ansiBold   = "\033[1m"
	ansiReset  = "\033[0m"
)

// colorize returns code, or empty string if NO_COLOR is set
func colorize(code string) string {
	if os.Getenv("NO_COLOR") != "" {
		return ""
	}
	return code
}

// Red returns ANSI red color code, or empty string if NO_COLOR is set
func Red() string { return colorize(ansiRed) }

// Green returns ANSI green color code, or empty string if NO_COLOR is set
func Green() string { return colorize(ansiGreen) }

// Yellow returns ANSI yellow color code, or empty string if NO_COLOR is set
func Yellow() string { return colorize(ansiYellow) }

// Blue returns ANSI blue color code, or empty string if NO_COLOR is set
func Blue() string { return colorize(ansiBlue) }

// Gray returns ANSI gray color code, or empty string if NO_COLOR is set
func Gray() string { return colorize(ansiGray) }

// Bold returns ANSI bold code, or empty string if NO_COLOR is set
func Bold() string { return colorize(ansiBold) }

// Reset returns ANSI reset code, or empty string if NO_COLOR is set
func Reset() string { return colorize(ansiReset) }
