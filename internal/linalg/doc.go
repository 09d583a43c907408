// Package linalg solves small dense linear systems.
//
// It exists for the Newton-Raphson step of the implicit integrator, where the
// system is 3x3 and rebuilt every iteration, so there is no factorisation
// cache and no sparse storage. Elimination uses partial pivoting and reports
// [ErrSingular] instead of dividing by a near-zero pivot.
package linalg
