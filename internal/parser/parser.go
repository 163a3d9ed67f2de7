package parser

import (
	"github.com/wbwatch/wbwatch/internal/models"
)

// Parser turns a rendered product page into a snapshot.
type Parser interface {
	ParseProductPage(html string, article string) (*models.Snapshot, error)
}
