// taskflow runs LLM pipelines against an OffloadMQ backend, either as an HTTP
// service or one-shot from the command line.
package main

func main() {
	Execute()
}
