package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCourseSetHash(t *testing.T) {
	base := CourseSetHash([]string{"c1", "c2", "c3"})

	assert.Equal(t, base, CourseSetHash([]string{"c3", "c1", "c2"}), "order must not matter")
	assert.NotEqual(t, base, CourseSetHash([]string{"c1", "c2"}), "subset must differ")
	assert.NotEqual(t, base, CourseSetHash([]string{"c1", "c1", "c2", "c3"}), "repeated ids must differ")
	assert.NotEmpty(t, CourseSetHash(nil))
}
