// Package extension mounts a replydesk Desk into a Forge application.
//
// The extension:
//   - Builds the Desk from configuration and a store
//   - Runs database migrations on Init
//   - Registers the review routes with OpenAPI metadata
//   - Serves the platform webhook and internal triggers through Handler
//   - Starts the worker pool and maintenance schedule on Start
//   - Stops them gracefully and closes the store on Stop
//
// Usage:
//
//	ext := extension.New(
//	    extension.WithStore(postgresStore),
//	    extension.WithConfig(cfg),
//	)
//	if err := ext.Init(ctx); err != nil {
//	    return err
//	}
//	ext.RegisterRoutes(app.Router(), app.Logger())
//	mux.Handle("/replydesk/", ext.Handler())
package extension
