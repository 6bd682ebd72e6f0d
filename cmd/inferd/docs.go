package main

// General API documentation for swaggo. Regenerate with `make swagger-gen`.
//
// @title           inferd API
// @version         1.0
// @description     OpenAI-compatible chat-completion API for a locally hosted model.
//
// @contact.name   inferd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
