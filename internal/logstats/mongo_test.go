package logstats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestFilterDoc(t *testing.T) {
	assert.Equal(t, bson.D{}, filterDoc(Filter{}))
	assert.Equal(t, bson.D{{Key: "method", Value: "GET"}}, filterDoc(Filter{Method: "GET"}))
	assert.Equal(t,
		bson.D{{Key: "method", Value: "GET"}, {Key: "path", Value: "/status"}},
		filterDoc(Filter{Method: "GET", Path: "/status"}),
	)
}

func TestTopIPsPipeline(t *testing.T) {
	p := topIPsPipeline(10)
	if assert.Len(t, p, 3) {
		assert.Equal(t, "$group", p[0][0].Key)
		assert.Equal(t, "$sort", p[1][0].Key)
		assert.Equal(t, "$limit", p[2][0].Key)
		assert.Equal(t, int64(10), p[2][0].Value)
	}
}
