package workflow

// SubmitEnabled is the validation gate of both workflows: a reader, at
// least one book and a non-empty date.
func SubmitEnabled(readerSelected bool, bookCount int, date string) bool {
	return readerSelected && bookCount > 0 && date != ""
}
