// Package search orquestra uma consulta de username: resposta do cache ou,
// em caso de miss, o stream de plataformas e a busca web em paralelo, com os
// resultados publicados em lotes num State observável.
package search
