// Package stream decodifica, de forma incremental, os dois formatos de
// streaming consumidos pelo lookup: NDJSON do serviço de plataformas e SSE do
// chat. Nenhum dos dois acumula a resposta inteira em memória.
package stream
