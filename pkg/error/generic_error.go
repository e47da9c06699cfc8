package error

// GenericError is an error the REST layer can turn into a response.
type GenericError interface {
	Error() string
	ErrCode() string
	StatusCode() int
}
