package banner

import (
	"fmt"
)

const banner = `
██╗██████╗ ███████╗ █████╗ ███████╗██╗      ██████╗ ██╗    ██╗
██║██╔══██╗██╔════╝██╔══██╗██╔════╝██║     ██╔═══██╗██║    ██║
██║██║  ██║█████╗  ███████║█████╗  ██║     ██║   ██║██║ █╗ ██║
██║██║  ██║██╔══╝  ██╔══██║██╔══╝  ██║     ██║   ██║██║███╗██║
██║██████╔╝███████╗██║  ██║██║     ███████╗╚██████╔╝╚███╔███╔╝
╚═╝╚═════╝ ╚══════╝╚═╝  ╚═╝╚═╝     ╚══════╝ ╚═════╝  ╚══╝╚══╝
`

// Print shows the startup banner with effective runtime settings.
func Print(addr, dbPath, engine, sources string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	fmt.Printf("Engine:   %s\n", engine)
	if sources != "" {
		fmt.Printf("Config:   %s\n", sources)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET    /v1/posts            list posts (order, cursor, count, q, tags, status, from, to)")
	fmt.Println("POST   /v1/posts            create a post (Idempotency-Key supported)")
	fmt.Println("GET    /v1/posts/{id}       fetch one post")
	fmt.Println("PUT    /v1/posts/{id}       replace post content")
	fmt.Println("PATCH  /v1/posts/{id}       partial content update")
	fmt.Println("DELETE /v1/posts/{id}       soft delete (?hard=true removes)")
	fmt.Println("POST   /v1/posts/reorder    bulk reorder (order | moves)")
	fmt.Println("POST   /v1/posts/move       move one post between neighbors")
	fmt.Println("POST   /v1/ai/sort          suggested order (?apply=true commits)")
	fmt.Println("POST   /v1/log              forward client events into the server log")
	fmt.Println("GET    /healthz             liveness probe")
	fmt.Println("GET    /metrics             prometheus metrics")
	fmt.Println()
}
