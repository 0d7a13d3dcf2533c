// Package server é o gateway HTTP na frente dos upstreams de lookup, busca web
// e chat. Cada rota tem seu próprio rate limit; as rotas de stream dividem um
// limite de conexões simultâneas.
package server
