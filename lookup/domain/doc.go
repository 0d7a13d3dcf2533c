// Package domain reúne os tipos do lookup de usernames: registros do stream de
// plataformas, resultado da busca web e a taxonomia de erros do gateway.
package domain
