package migrations

import (
	"quote-booking/internal/audit"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := audit.NewCollection()
		// Readable by superusers only; written by the service.
		collection.ListRule = nil
		collection.ViewRule = nil
		collection.CreateRule = nil
		collection.UpdateRule = nil
		collection.DeleteRule = nil

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId(audit.CollectionName)
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
