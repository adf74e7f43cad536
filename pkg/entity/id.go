package entity

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	memoryIDPrefix = "mem"
	taskIDPrefix   = "task"
	idAlphabet     = "0123456789abcdefghijklmnopqrstuvwxyz"
	idLength       = 12
)

// NewMemoryID generates a unique memory id
func NewMemoryID() string {
	return newID(memoryIDPrefix)
}

// NewTaskID generates a unique task id
func NewTaskID() string {
	return newID(taskIDPrefix)
}

func newID(prefix string) string {
	id, err := gonanoid.Generate(idAlphabet, idLength)
	if err != nil {
		// Generate only fails on a broken entropy source
		panic(fmt.Sprintf("id generation failed: %v", err))
	}
	return prefix + "-" + id
}
