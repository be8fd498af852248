package workflow

// Containers whose contents are filled by a fetch.
const (
	ContainerReaders   = "readerList"
	ContainerBooks     = "bookList"
	ContainerBorrowing = "borrowingReadersList"
	ContainerReturn    = "booksList"
	ContainerHistory   = "historyList"
)

// tokens hands out a monotonically increasing number per container. A fetch
// result is applied only if its token is still the latest for the container,
// so a slow response cannot overwrite a newer render.
//
// Not safe for concurrent use; controllers guard it with their mutex.
type tokens struct {
	last map[string]uint64
}

func newTokens() *tokens {
	return &tokens{last: make(map[string]uint64)}
}

func (t *tokens) issue(container string) uint64 {
	t.last[container]++
	return t.last[container]
}

func (t *tokens) latest(container string, token uint64) bool {
	return t.last[container] == token
}
