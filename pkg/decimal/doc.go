/*
Package decimal implements an immutable signed number whose magnitude is not
bounded by the range of float64.

# Representation

A [Decimal] is a sign, a layer count, a significand and a base-10 exponent:

	layer 0:  |x| = mant × 10^exp         1 <= mant < 10, exp integral, |exp| < 9e15
	layer n:  |x| = 10^10^...^exp         n+1 tens, 15.95 <= exp < 9e15

Significands carry 15 significant digits, so sums such as 1e100 + 2e100
come out as exactly 3e+100 and 0.1 + 0.2 as 0.3. Every constructor and every
operation returns a normalized value: there is exactly one encoding for each
number and a single encoding of zero, so two decimals are equal if and only
if their fields are equal. Magnitudes below 10^-9e15 underflow to zero.

# Text form

[Decimal.String] is lossless and is the canonical form used for persistence
and as cache and pool key:

	0
	1000
	0.000015
	3e+100
	-1.5e-7
	ee20          10^10^20
	eee400        10^10^10^400
	(e^5)320      five iterated exponentiations of 320

[Parse] accepts everything String produces plus plain and scientific input
whose exponent may itself be a decimal (1e1e10). The grammar is:

	sign        ::= '+' | '-'
	digits      ::= { '0' ... '9' }
	significand ::= digits '.' digits | '.' digits | digits '.' | digits
	scientific  ::= significand [ ('e' | 'E') number ]
	iterated    ::= ( 'e' { 'e' } | '(e^' digits ')' ) number
	number      ::= [sign] ( iterated | scientific )

# Errors

Operations that can leave their mathematical domain (Pow of a negative base
with a fractional exponent, Ln of a non-positive value) return an error
wrapping [ErrDomain]. Division by zero is not an error: it yields zero.
*/
package decimal
