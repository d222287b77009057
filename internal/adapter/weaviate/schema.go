package weaviate

import (
	"context"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

const className = "BrandChunk"

// SchemaClient is the slice of the Weaviate client used for schema
// management, extracted so schema logic is testable without a server.
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

type clientAdapter struct {
	client *weaviate.Client
}

func (a *clientAdapter) ClassExists(ctx context.Context, className string) (bool, error) {
	return a.client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
}

func (a *clientAdapter) CreateClass(ctx context.Context, class *models.Class) error {
	return a.client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (a *clientAdapter) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return a.client.Schema().ClassGetter().WithClassName(className).Do(ctx)
}

func (a *clientAdapter) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return a.client.Schema().PropertyCreator().WithClassName(className).WithProperty(property).Do(ctx)
}

// EnsureSchema creates the BrandChunk class if missing, or adds any
// missing properties to an existing class. Vectors are supplied by the
// embedder, so the class carries no vectorizer.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, className)
	if err != nil {
		return err
	}

	properties := []*models.Property{
		{Name: "content", DataType: []string{"text"}},
		{Name: "documentId", DataType: []string{"string"}},
		{Name: "brandId", DataType: []string{"string"}},
		{Name: "ordinal", DataType: []string{"int"}},
		{Name: "charStart", DataType: []string{"int"}},
		{Name: "charEnd", DataType: []string{"int"}},
	}

	if !exists {
		class := &models.Class{
			Class:       className,
			Description: "A chunk of a brand document",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return client.CreateClass(ctx, class)
	}

	class, err := client.GetClass(ctx, className)
	if err != nil {
		return err
	}

	existing := make(map[string]bool)
	for _, p := range class.Properties {
		existing[p.Name] = true
	}
	for _, p := range properties {
		if !existing[p.Name] {
			if err := client.AddProperty(ctx, className, p); err != nil {
				return err
			}
		}
	}
	return nil
}
