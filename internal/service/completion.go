package service

import (
	"edu_progress_backend/internal/model"
	"math"
)

// 所有计算都在浮点上累积，只在输出时调用 RoundPercent 取整一次

// RoundPercent 四舍五入并限制在 [0,100]
func RoundPercent(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 100 {
		return 100
	}
	return int(math.Round(v))
}

func ratio(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * float64(done) / float64(total)
}

// completedItemCount 只统计仍属于课时的完成项
func completedItemCount(p *model.LessonProgress, lesson *model.Lesson) (done, total int) {
	set := p.CompletedSet()
	items := lesson.Items()
	for _, id := range items {
		if set[id] {
			done++
		}
	}
	return done, len(items)
}

// ExercisePercentage 练习部分的完成度
func ExercisePercentage(p *model.LessonProgress, lesson *model.Lesson) float64 {
	done, total := completedItemCount(p, lesson)
	return ratio(done, total)
}

// LessonPercentage 单个课时的完成度，未取整
func LessonPercentage(p *model.LessonProgress, lesson *model.Lesson) float64 {
	if p == nil {
		return 0
	}
	if p.Completed {
		return 100
	}

	switch Classify(lesson) {
	case VariantVideo:
		if !lesson.HasExercises() {
			if p.VideoWatched {
				return 100
			}
			return 0
		}
		exercisePct := ExercisePercentage(p, lesson)
		if p.VideoWatched && exercisePct >= 100 {
			return 100
		}
		videoPct := math.Min(p.WatchedFraction*100, 100)
		return (videoPct + exercisePct) / 2
	default:
		if !lesson.HasExercises() {
			return 0
		}
		return ExercisePercentage(p, lesson)
	}
}

// LessonPercent 课时完成度的输出值。未完成的课时最多 99，
// 题目很多时 99.5 以上不会被四舍五入成 100。
func LessonPercent(p *model.LessonProgress, lesson *model.Lesson) int {
	pct := RoundPercent(LessonPercentage(p, lesson))
	if pct >= 100 && (p == nil || !p.Completed) {
		return 99
	}
	return pct
}

// Weights 课程进度三个维度的权重，按参与计算的维度归一化
type Weights struct {
	Lessons     float64 `json:"lessons"`
	Quizzes     float64 `json:"quizzes"`
	Assignments float64 `json:"assignments"`
}

func DefaultWeights() Weights {
	return Weights{Lessons: 1, Quizzes: 1, Assignments: 1}
}

// CourseCounts 课程进度的原始计数
type CourseCounts struct {
	LessonsCompleted     int
	LessonsTotal         int
	QuizzesCompleted     int
	QuizzesTotal         int
	AssignmentsSubmitted int
	AssignmentsTotal     int
}

// CoursePercentage 分母为 0 的维度不参与加权平均
func CoursePercentage(c CourseCounts, w Weights) float64 {
	var sum, weight float64
	add := func(done, total int, wt float64) {
		if total <= 0 || wt <= 0 {
			return
		}
		sum += ratio(done, total) * wt
		weight += wt
	}
	add(c.LessonsCompleted, c.LessonsTotal, w.Lessons)
	add(c.QuizzesCompleted, c.QuizzesTotal, w.Quizzes)
	add(c.AssignmentsSubmitted, c.AssignmentsTotal, w.Assignments)

	if weight == 0 {
		return 0
	}
	return sum / weight
}

// StudentOverall 所有已选课程的算术平均，没有课程时为 0
func StudentOverall(coursePercentages []float64) float64 {
	if len(coursePercentages) == 0 {
		return 0
	}
	var sum float64
	for _, p := range coursePercentages {
		sum += p
	}
	return sum / float64(len(coursePercentages))
}
