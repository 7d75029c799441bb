package util

import (
	"regexp"
	"time"
)

const DateLayout = "2006-01-02"

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._@:\-]{1,128}$`)

// ValidateUserID accepts the caller supplied identifiers used as store keys
// and in resource URIs.
func ValidateUserID(userID string) bool {
	return userIDPattern.MatchString(userID)
}

func ValidateDate(date string) bool {
	_, err := time.Parse(DateLayout, date)
	return err == nil
}

func ValidateDateRange(start, end string) bool {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return false
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return false
	}
	return !e.Before(s)
}
