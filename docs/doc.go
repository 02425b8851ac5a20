// Package docs provides generated OpenAPI documentation.
//
// Library API
//
//	@title			Library API
//	@version		1.0
//	@description	Book catalog with a tiered content cache. Serves paginated text and HTML and in-book search.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/abhishek-sinu/Vedic-ebook-library-sub000
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/library/serve.go -o ./swagger --parseDependency --parseInternal
