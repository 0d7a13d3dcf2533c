// Package cache mantém os resultados de buscas recentes sobre um Storage de
// chaves com namespace (memória, arquivo SQLite ou Redis).
package cache
