// Package classify assigns documents to topics by embedding similarity.
package classify

import (
	"context"

	"github.com/hyperjump/shiori/internal/embedding"
	"github.com/hyperjump/shiori/pkg/utils"
)

// Unclassified is returned when no topic can be meaningfully chosen. It is a
// valid terminal outcome, not an error.
const Unclassified = "Unclassified"

// Classifier picks the best-matching topic for a document. Topics are plain
// labels embedded through the same text model as the document, so the
// comparison happens in one similarity space. Classification is a transient
// per-document decision; nothing is persisted, and re-running with a
// different topic list is always possible.
type Classifier struct {
	provider embedding.Provider
}

// New returns a classifier using the given embedding provider.
func New(provider embedding.Provider) *Classifier {
	return &Classifier{provider: provider}
}

// Classify returns the topic from topics whose embedding is most similar to
// the embedding of text. Ties keep the earlier topic, so the result is a pure
// function of the inputs. Returns Unclassified when text or topics are empty,
// when the document embedding fails, or when every topic embedding fails;
// individual topic embedding failures only exclude that topic.
func (c *Classifier) Classify(ctx context.Context, text string, topics []string) string {
	if text == "" || len(topics) == 0 {
		return Unclassified
	}
	docVec, err := c.provider.EmbedText(ctx, text)
	if err != nil || len(docVec) == 0 {
		return Unclassified
	}
	best := Unclassified
	bestScore := 0.0
	found := false
	for _, topic := range topics {
		topicVec, err := c.provider.EmbedText(ctx, topic)
		if err != nil || len(topicVec) == 0 {
			continue
		}
		score := utils.CosineSimilarity(docVec, topicVec)
		if !found || score > bestScore {
			best = topic
			bestScore = score
			found = true
		}
	}
	return best
}
