package model

import "github.com/m-mizutani/goerr/v2"

var (
	ErrInvalidIdentity = goerr.New("invalid identity")
	ErrNotLoggedIn     = goerr.New("not logged in")
	ErrKeyNotFound     = goerr.New("key not found")

	ErrAnalysisFailed  = goerr.New("analysis failed")
	ErrInvalidMoisture = goerr.New("moisture must be between 0 and 100")
	ErrInvalidStatus   = goerr.New("invalid crop status")
	ErrInvalidImage    = goerr.New("invalid image")
	ErrUnknownKind     = goerr.New("unknown analysis kind")

	ErrRecordNotFound = goerr.New("record not found")
)
